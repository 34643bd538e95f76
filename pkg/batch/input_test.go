package batch

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/minghsuy/pixel-detector-v2/pkg/domain"
)

func TestReadDomainList(t *testing.T) {
	path := filepath.Join(t.TempDir(), "domains.txt")
	content := `# healthcare systems batch 3
example.com

www.another.org
   # indented comment
https://third.net/path
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	lines, err := ReadDomainList(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com", "www.another.org", "https://third.net/path"}, lines)
}

func TestReadDomainListMissingFile(t *testing.T) {
	_, err := ReadDomainList(filepath.Join(t.TempDir(), "nope.txt"))
	require.Error(t, err)
}

func TestValidateAll(t *testing.T) {
	valid, rejected := ValidateAll([]string{
		"example.com",
		"not-a-domain",
		"user@example.com",
		"https://www.clinic.co.uk/contact",
	})

	require.Len(t, valid, 2)
	assert.Equal(t, "example.com", valid[0].Name)
	assert.Equal(t, "clinic.co.uk", valid[1].Name)

	require.Len(t, rejected, 2)
	assert.Equal(t, domain.RejectionNoSuffix, rejected["not-a-domain"].Reason)
	assert.Equal(t, domain.RejectionEmail, rejected["user@example.com"].Reason)
}
