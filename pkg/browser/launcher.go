package browser

import (
	"github.com/go-rod/rod/lib/launcher"
	"github.com/spf13/viper"
)

// GetBrowserLauncher builds the headless chromium launcher from config.
func GetBrowserLauncher() *launcher.Launcher {
	options := launcher.New().
		Headless(viper.GetBool("navigation.headless")).
		Set("allow-running-insecure-content").
		Set("disable-infobars").
		Set("disable-extensions").
		Set("mute-audio")

	if viper.GetString("navigation.proxy") != "" {
		options.Proxy(viper.GetString("navigation.proxy"))
	}
	if viper.GetBool("navigation.browser.disable_images") {
		options = options.Set("disable-images")
	}
	if viper.GetBool("navigation.browser.disable_gpu") {
		options = options.Set("disable-gpu")
	}
	if viper.GetBool("navigation.browser.no_sandbox") {
		options = options.Set("no-sandbox")
	}
	return options
}
