package checkout

import "strings"

const (
	defaultGivenName  = "Cliente"
	defaultFamilyName = "Anônimo"
	defaultEmail      = "email@naoinformado.com"
)

// Payer is the raw contact data typed by the customer.
type Payer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone"`
}

// buyerFrom applies the gateway defaults. It never fails: missing or
// malformed fields fall back to placeholders.
func buyerFrom(p *Payer) Buyer {
	var b Buyer
	if p == nil {
		p = &Payer{}
	}
	b.GivenName, b.FamilyName = splitName(p.Name)
	b.Email = strings.TrimSpace(p.Email)
	if b.Email == "" {
		b.Email = defaultEmail
	}
	b.AreaCode, b.Number = splitPhone(p.Phone)
	return b
}

func splitName(full string) (given, family string) {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return defaultGivenName, defaultFamilyName
	}
	return fields[0], strings.Join(fields[1:], " ")
}

// splitPhone takes the first two digits as the area code (DDD). Only ASCII
// digits count; anything else is dropped.
func splitPhone(raw string) (area, number string) {
	digits := strings.Map(func(r rune) rune {
		if '0' <= r && r <= '9' {
			return r
		}
		return -1
	}, raw)
	if len(digits) <= 2 {
		return "", ""
	}
	return digits[:2], digits[2:]
}
