package batch

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/minghsuy/pixel-detector-v2/pkg/domain"
)

// ReadDomainList reads a line-delimited domain file. Blank lines and
// #-comment lines are ignored.
func ReadDomainList(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening domain list %s: %w", path, err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading domain list %s: %w", path, err)
	}
	return lines, nil
}

// ValidateAll validates raw inputs, returning the scannable domains and a
// map of rejected inputs. Rejections never enter the scan path.
func ValidateAll(inputs []string) ([]domain.Domain, map[string]*domain.ValidationError) {
	var valid []domain.Domain
	rejected := make(map[string]*domain.ValidationError)
	for _, raw := range inputs {
		d, err := domain.Validate(raw)
		if err != nil {
			var verr *domain.ValidationError
			if !errors.As(err, &verr) {
				verr = &domain.ValidationError{Input: raw, Reason: domain.RejectionUnparseable, Detail: err.Error()}
			}
			rejected[raw] = verr
			log.Debug().Str("input", raw).Err(err).Msg("Rejected input")
			continue
		}
		valid = append(valid, d)
	}
	return valid, rejected
}
