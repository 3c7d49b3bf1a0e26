package service

import (
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/Fallstop/super-tracker-nz/internal/catalogapi"
)

const (
	packUnit = "pack"
	eachUnit = "ea"
)

// SizeUnit is the size information derived for a new catalog entry.
type SizeUnit struct {
	Size     *float64
	Quantity int
	Unit     *string
}

// ParseUnit splits free text such as "300kg" into its number and trailing
// unit token. The unit is the run of letters at the end of the string; the
// number defaults to 1 when the rest does not parse.
//
//	"300kg"  -> 300, "kg"
//	"per kg" -> 1, "kg"
func ParseUnit(text string) (float64, string) {
	runes := []rune(text)
	start := len(runes)
	for start > 0 && unicode.IsLetter(runes[start-1]) {
		start--
	}
	unit := string(runes[start:])

	remainder := text
	if unit != "" {
		remainder = strings.ReplaceAll(text, unit, "")
	}
	size, err := strconv.ParseFloat(strings.TrimSpace(remainder), 64)
	if err != nil {
		size = 1.0
	}
	return size, unit
}

// ExtractSizeUnit derives size, unit and pack quantity from the product's
// free-text fields. volumeSize wins, then a single-word variety, then the
// cup measure scaled by effectivePrice/cupPrice.
func ExtractSizeUnit(p *catalogapi.Product, effectivePrice float64) SizeUnit {
	out := SizeUnit{Quantity: 1}

	if p.Size.VolumeSize != nil {
		size, unit := ParseUnit(*p.Size.VolumeSize)
		if unit == packUnit {
			if n := int(size); n > 0 {
				out.Quantity = n
			}
		} else {
			if unit != "" {
				out.Unit = &unit
			}
			out.Size = &size
		}
	}

	if out.Unit == nil && p.Variety != nil {
		size, unit := ParseUnit(*p.Variety)
		if unit != "" && size != 1.0 && !strings.Contains(*p.Variety, " ") {
			out.Unit = &unit
			out.Size = &size
		}
	}

	if out.Unit == nil && p.Size.CupMeasure != nil && p.Size.CupPrice != nil && *p.Size.CupPrice != 0 {
		size, unit := ParseUnit(*p.Size.CupMeasure)
		realSize := size * (effectivePrice / *p.Size.CupPrice) / float64(out.Quantity)

		if unit == eachUnit {
			if out.Quantity == 1 {
				out.Quantity = int(math.Round(realSize))
			}
		} else {
			if unit != "" {
				out.Unit = &unit
			}
			out.Size = &realSize
		}
	}

	return out
}
