package model

import (
	"fmt"
	"strings"
)

// Instrument is one monitored OTC symbol.
type Instrument struct {
	Code string `json:"code" yaml:"code"` // feed asset code, e.g. "USDJPY_otc"
	Name string `json:"name" yaml:"name"` // display name, e.g. "USD/JPY (OTC)"
}

// DisplayName returns the chat-friendly name: "USD/JPY (OTC)" → "USD/JPY-OTC".
func (i Instrument) DisplayName() string {
	if i.Name == "" {
		return i.Code
	}
	return strings.Replace(i.Name, " (OTC)", "-OTC", 1)
}

// Catalog is the ordered, read-only instrument list scanned each cycle.
type Catalog struct {
	items []Instrument
	index map[string]int
}

// NewCatalog builds a catalog preserving the given order.
// Duplicate or empty codes are rejected.
func NewCatalog(items []Instrument) (*Catalog, error) {
	c := &Catalog{
		items: make([]Instrument, 0, len(items)),
		index: make(map[string]int, len(items)),
	}
	for _, it := range items {
		it.Code = strings.TrimSpace(it.Code)
		if it.Code == "" {
			return nil, fmt.Errorf("catalog: empty instrument code")
		}
		if _, dup := c.index[it.Code]; dup {
			return nil, fmt.Errorf("catalog: duplicate instrument %q", it.Code)
		}
		c.index[it.Code] = len(c.items)
		c.items = append(c.items, it)
	}
	if len(c.items) == 0 {
		return nil, fmt.Errorf("catalog: no instruments")
	}
	return c, nil
}

// Instruments returns a copy of the list in scan order.
func (c *Catalog) Instruments() []Instrument {
	out := make([]Instrument, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of instruments.
func (c *Catalog) Len() int { return len(c.items) }

// Lookup finds an instrument by code.
func (c *Catalog) Lookup(code string) (Instrument, bool) {
	i, ok := c.index[code]
	if !ok {
		return Instrument{}, false
	}
	return c.items[i], true
}

// Name returns the display name for code, or code itself when unknown.
func (c *Catalog) Name(code string) string {
	if it, ok := c.Lookup(code); ok {
		return it.DisplayName()
	}
	return code
}

// DefaultInstruments is the stock OTC watch list.
func DefaultInstruments() []Instrument {
	return []Instrument{
		{"AUDNZD_otc", "AUD/NZD (OTC)"},
		{"AXP_otc", "American Express (OTC)"},
		{"BA_otc", "Boeing Company (OTC)"},
		{"BRLUSD_otc", "USD/BRL (OTC)"},
		{"BTCUSD_otc", "Bitcoin (OTC)"},
		{"CADCHF_otc", "CAD/CHF (OTC)"},
		{"EURNZD_otc", "EUR/NZD (OTC)"},
		{"FB_otc", "Facebook Inc (OTC)"},
		{"NZDCAD_otc", "NZD/CAD (OTC)"},
		{"NZDCHF_otc", "NZD/CHF (OTC)"},
		{"NZDJPY_otc", "NZD/JPY (OTC)"},
		{"PFE_otc", "Pfizer Inc (OTC)"},
		{"UKBrent_otc", "UK Brent (OTC)"},
		{"USCrude_otc", "US Crude (OTC)"},
		{"USDARS_otc", "USD/ARS (OTC)"},
		{"USDBDT_otc", "USD/BDT (OTC)"},
		{"USDCOP_otc", "USD/COP (OTC)"},
		{"USDDZD_otc", "USD/DZD (OTC)"},
		{"USDEGP_otc", "USD/EGP (OTC)"},
		{"USDIDR_otc", "USD/IDR (OTC)"},
		{"USDINR_otc", "USD/INR (OTC)"},
		{"USDJPY_otc", "USD/JPY (OTC)"},
		{"USDMXN_otc", "USD/MXN (OTC)"},
		{"USDNGN_otc", "USD/NGN (OTC)"},
		{"USDPHP_otc", "USD/PHP (OTC)"},
		{"USDPKR_otc", "USD/PKR (OTC)"},
		{"USDTRY_otc", "USD/TRY (OTC)"},
		{"USDZAR_otc", "USD/ZAR (OTC)"},
		{"XAGUSD_otc", "Silver (OTC)"},
		{"XAUUSD_otc", "Gold (OTC)"},
	}
}

// DefaultCatalog returns the catalog built from DefaultInstruments.
func DefaultCatalog() *Catalog {
	c, _ := NewCatalog(DefaultInstruments())
	return c
}
