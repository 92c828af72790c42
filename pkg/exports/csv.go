package exports

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/hdcn/ledenportaal/pkg/members"
)

// csvColumns returns the header row for an extract kind.
func csvColumns(kind Kind) ([]string, error) {
	switch kind {
	case KindAddressList:
		return []string{"member_number", "name", "street", "postal_code", "city", "region"}, nil
	case KindFullDump:
		return []string{
			"member_number", "first_name", "infix", "last_name",
			"email", "phone", "street", "postal_code", "city", "region",
			"kind", "active", "joined_at",
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownKind, kind)
	}
}

// csvRow renders one member. The column order matches csvColumns.
func csvRow(kind Kind, m *members.Member) []string {
	if kind == KindAddressList {
		return []string{m.MemberNumber, m.FullName(), m.Street, m.PostalCode, m.City, m.Region}
	}
	return []string{
		m.MemberNumber, m.FirstName, m.Infix, m.LastName,
		m.Email, m.Phone, m.Street, m.PostalCode, m.City, m.Region,
		string(m.Kind), strconv.FormatBool(m.Active),
		m.JoinedAt.Format("2006-01-02"),
	}
}

// csvWriter streams members into w as CSV, header first. It counts the
// data rows written so the run record can report them.
type csvWriter struct {
	kind Kind
	w    *csv.Writer
	rows int
}

func newCSVWriter(kind Kind, w io.Writer) (*csvWriter, error) {
	columns, err := csvColumns(kind)
	if err != nil {
		return nil, err
	}

	cw := &csvWriter{kind: kind, w: csv.NewWriter(w)}
	if err := cw.w.Write(columns); err != nil {
		return nil, fmt.Errorf("failed to write csv header: %w", err)
	}

	return cw, nil
}

func (c *csvWriter) writeMember(m *members.Member) error {
	if err := c.w.Write(csvRow(c.kind, m)); err != nil {
		return fmt.Errorf("failed to write csv row: %w", err)
	}
	c.rows++
	return nil
}

func (c *csvWriter) flush() error {
	c.w.Flush()
	if err := c.w.Error(); err != nil {
		return fmt.Errorf("failed to flush csv: %w", err)
	}
	return nil
}
