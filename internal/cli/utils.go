package cli

import (
	"bufio"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/energynexus/nexus-cli/internal/filter"
	"github.com/energynexus/nexus-cli/internal/models"
	"github.com/spf13/cobra"
)

func parseTickRate(rate string) (time.Duration, error) {
	var hz float64
	_, err := fmt.Sscanf(strings.ToLower(rate), "%fhz", &hz)
	if err != nil {
		return 0, err
	}
	if hz <= 0 {
		return 0, fmt.Errorf("rate must be positive")
	}
	return time.Duration(float64(time.Second) / hz), nil
}

func isPortAvailable(host string, port int) bool {
	listener, err := net.Listen("tcp", net.JoinHostPort(host, fmt.Sprint(port)))
	if err != nil {
		return false
	}
	listener.Close()
	return true
}

// readPassword takes the password from the flag, $NEXUS_PASSWORD, or one line of stdin
func readPassword(cmd *cobra.Command, flagValue string) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if env := os.Getenv("NEXUS_PASSWORD"); env != "" {
		return env, nil
	}
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", fmt.Errorf("failed to read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// viewFlags are the filter flags shared by report, watch and export
type viewFlags struct {
	search string
	attr   string
	value  string
	min    string
	max    string
	limit  int
}

func (f *viewFlags) register(cmd *cobra.Command, defaultLimit int) {
	cmd.Flags().StringVar(&f.search, "search", "", "Free-text search across every field")
	cmd.Flags().StringVar(&f.attr, "attr", "", "Attribute to filter on (e.g. hvac, dayOfWeek, temperature)")
	cmd.Flags().StringVar(&f.value, "value", "", "Value a categorical --attr must equal")
	cmd.Flags().StringVar(&f.min, "min", "", "Inclusive lower bound for a numeric --attr")
	cmd.Flags().StringVar(&f.max, "max", "", "Inclusive upper bound for a numeric --attr")
	cmd.Flags().IntVar(&f.limit, "limit", defaultLimit, "Maximum rows to show (0 for all)")
}

// selection builds the filter state; categorical and range flags need --attr
func (f *viewFlags) selection() (*filter.Selection, error) {
	sel := filter.NewSelection()
	sel.SetFreeText(f.search)
	if f.attr == "" {
		if f.value != "" || f.min != "" || f.max != "" {
			return nil, fmt.Errorf("--value, --min and --max require --attr")
		}
		return sel, nil
	}

	field, err := filter.ParseField(f.attr)
	if err != nil {
		return nil, err
	}
	sel.SetAttribute(field)
	if f.value != "" {
		if err := sel.SetCategorical(f.value); err != nil {
			return nil, err
		}
	}
	r, err := filter.ParseRange(f.min, f.max)
	if err != nil {
		return nil, err
	}
	if r != nil {
		if err := sel.SetRange(*r); err != nil {
			return nil, err
		}
	}
	return sel, nil
}

// attributeValues lists the choices --value accepts for attr, All first
func attributeValues(readings []models.Reading, attr string) ([]string, error) {
	if attr == "" {
		return nil, fmt.Errorf("--values requires --attr")
	}
	field, err := filter.ParseField(attr)
	if err != nil {
		return nil, err
	}
	return filter.DistinctValues(readings, field), nil
}
