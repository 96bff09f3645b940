package permission

import (
	"slices"
	"strings"
)

// Mode is the shape of a Predicate.
type Mode int

// Predicate modes.
const (
	ModeDenyAll Mode = iota
	ModeAllowAll
	ModeRestricted
)

// String returns the mode name.
func (m Mode) String() string {
	switch m {
	case ModeAllowAll:
		return "allow_all"
	case ModeRestricted:
		return "restricted"
	default:
		return "deny_all"
	}
}

// Predicate selects participant records by desa and kelompok. A restricted
// predicate matches a record whose desa is in Desa or whose kelompok is in
// Kelompok.
type Predicate struct {
	Mode     Mode     `json:"mode"`
	Desa     []string `json:"desa,omitempty"`
	Kelompok []string `json:"kelompok,omitempty"`
}

// DenyAll matches nothing.
func DenyAll() Predicate { return Predicate{Mode: ModeDenyAll} }

// AllowAll matches everything.
func AllowAll() Predicate { return Predicate{Mode: ModeAllowAll} }

// Restrict matches records in any of the given areas. With no areas it
// matches nothing.
func Restrict(desa, kelompok []string) Predicate {
	if len(desa) == 0 && len(kelompok) == 0 {
		return DenyAll()
	}
	return Predicate{
		Mode:     ModeRestricted,
		Desa:     slices.Clone(desa),
		Kelompok: slices.Clone(kelompok),
	}
}

// Allows evaluates the predicate against one record.
func (p Predicate) Allows(desa, kelompok string) bool {
	switch p.Mode {
	case ModeAllowAll:
		return true
	case ModeRestricted:
		return slices.Contains(p.Desa, desa) || slices.Contains(p.Kelompok, kelompok)
	default:
		return false
	}
}

// SQL renders the predicate as a WHERE clause over columns desa and kelompok
// with ? placeholders, and the matching arguments.
func (p Predicate) SQL() (string, []any) {
	if p.Mode == ModeAllowAll {
		return "1=1", nil
	}
	if p.Mode != ModeRestricted {
		return "1=0", nil
	}

	var (
		terms []string
		args  []any
	)
	if len(p.Desa) > 0 {
		terms = append(terms, "desa IN ("+placeholders(len(p.Desa))+")")
		for _, d := range p.Desa {
			args = append(args, d)
		}
	}
	if len(p.Kelompok) > 0 {
		terms = append(terms, "kelompok IN ("+placeholders(len(p.Kelompok))+")")
		for _, k := range p.Kelompok {
			args = append(args, k)
		}
	}
	if len(terms) == 0 {
		return "1=0", nil
	}
	return strings.Join(terms, " OR "), args
}

// String renders the predicate for display.
func (p Predicate) String() string {
	clause, args := p.SQL()
	if len(args) == 0 {
		return clause
	}

	var b strings.Builder
	i := 0
	for _, r := range clause {
		if r == '?' && i < len(args) {
			b.WriteString("'" + strings.ReplaceAll(args[i].(string), "'", "''") + "'")
			i++
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?,", n), ",")
}
