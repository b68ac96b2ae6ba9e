package roles

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tajious/medsync/internal/models"
)

// NextIdentifier returns the code following the highest numeric suffix in
// existing, e.g. P004 after P001 and P003, or PH01 when there is none.
// Codes that do not carry role's prefix or a numeric suffix count as zero.
func NextIdentifier(role models.Role, existing []string) (string, error) {
	prefix := role.IdentifierPrefix()
	if prefix == "" {
		return "", fmt.Errorf("no identifier convention for role %s", role)
	}

	highest := 0
	for _, code := range existing {
		code = strings.ToUpper(strings.TrimSpace(code))
		if !strings.HasPrefix(code, prefix) || FromIdentifier(code) != role {
			continue
		}
		n, err := strconv.Atoi(code[len(prefix):])
		if err != nil {
			continue
		}
		if n > highest {
			highest = n
		}
	}

	return fmt.Sprintf("%s%0*d", prefix, role.IdentifierWidth(), highest+1), nil
}
