package overpass

import (
	"regexp"
	"strings"
)

type Address struct {
	Street      string
	HouseNumber string
}

var (
	streetPrefix = regexp.MustCompile(`(?i)^(ул\.?|улица|пр-т\.?|пр-кт\.?|просп\.?|проспект|пер\.?|переулок|ш\.?|шоссе|б-р\.?|бульвар|пл\.?|площадь|наб\.?|набережная|проезд|пр-д\.?|туп\.?|тупик)\s+`)
	streetSuffix = regexp.MustCompile(`(?i)\s+(ул\.?|улица|пр-т\.?|проспект|пер\.?|переулок|ш\.?|шоссе|б-р\.?|бульвар|пл\.?|площадь|наб\.?|набережная|проезд)$`)
	housePrefix  = regexp.MustCompile(`(?i)^(дом|д\.?)\s*`)
	houseNumber  = regexp.MustCompile(`^\d+[\p{L}\d/-]*$`)
	settlement   = regexp.MustCompile(`(?i)^(г\.?|город|пос\.?|п\.?|с\.?|село|ст-ца\.?|станица|х\.?|хутор|обл\.?|р-н\.?|край)\s`)
	qlUnsafe     = regexp.MustCompile(`[\\"^$.|?*+()\[\]{}]`)
)

// ParseAddress extracts street and house number from a comma separated
// address such as "г. Краснодар, ул. Мира, д. 5".
func ParseAddress(raw string) (Address, bool) {
	parts := strings.Split(raw, ",")
	var addr Address
	streetIdx := -1
	for i, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if addr.Street == "" && (streetPrefix.MatchString(part) || streetSuffix.MatchString(part)) {
			addr.Street = strings.TrimSpace(streetSuffix.ReplaceAllString(streetPrefix.ReplaceAllString(part, ""), ""))
			streetIdx = i
			continue
		}
		if addr.HouseNumber == "" && (streetIdx >= 0 || housePrefix.MatchString(part)) {
			candidate := strings.TrimSpace(housePrefix.ReplaceAllString(part, ""))
			if houseNumber.MatchString(candidate) {
				addr.HouseNumber = candidate
			}
		}
	}

	// "Мира 5" without a street marker.
	if addr.Street == "" {
		for i := len(parts) - 1; i >= 0; i-- {
			fields := strings.Fields(strings.TrimSpace(parts[i]))
			if len(fields) < 2 || settlement.MatchString(parts[i]) {
				continue
			}
			last := fields[len(fields)-1]
			if houseNumber.MatchString(last) {
				addr.Street = strings.Join(fields[:len(fields)-1], " ")
				addr.HouseNumber = last
				break
			}
		}
	}

	addr.Street = qlUnsafe.ReplaceAllString(addr.Street, "")
	addr.HouseNumber = qlUnsafe.ReplaceAllString(addr.HouseNumber, "")
	if addr.Street == "" || addr.HouseNumber == "" {
		return Address{}, false
	}
	return addr, true
}

func (a Address) Key() string {
	return strings.ToLower(a.Street) + "|" + strings.ToLower(a.HouseNumber)
}
