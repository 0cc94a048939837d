package domain

// GadgetType enumerates the device categories the underwriter covers.
type GadgetType string

const (
	GadgetNone         GadgetType = "None"
	GadgetMobilePhone  GadgetType = "MobilePhone"
	GadgetLaptop       GadgetType = "Laptop"
	GadgetTablet       GadgetType = "Tablet"
	GadgetVRHeadset    GadgetType = "VRHeadset"
	GadgetWatch        GadgetType = "Watch"
	GadgetGamesConsole GadgetType = "GamesConsole"
)

var validGadgetTypes = map[GadgetType]struct{}{
	GadgetNone:         {},
	GadgetMobilePhone:  {},
	GadgetLaptop:       {},
	GadgetTablet:       {},
	GadgetVRHeadset:    {},
	GadgetWatch:        {},
	GadgetGamesConsole: {},
}

// Valid reports whether the gadget type is one of the enumerated values.
func (g GadgetType) Valid() bool {
	_, ok := validGadgetTypes[g]
	return ok
}

// Manufacturer is a device maker as listed by the remote catalogue.
type Manufacturer struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Model is a concrete device model offered for a manufacturer and gadget type.
type Model struct {
	ID           int    `json:"id"`
	ProductID    int    `json:"productId"`
	Name         string `json:"name"`
	Manufacturer string `json:"manufacturer,omitempty"`
	GadgetType   string `json:"gadgetType,omitempty"`
}

// GadgetDetails describes one device to be insured. ProductID identifies the
// catalogue model; the remaining fields qualify the individual unit.
type GadgetDetails struct {
	ProductID       int     `json:"productId" validate:"required"`
	DateOfPurchase  string  `json:"dateOfPurchase,omitempty"`
	SerialNumber    string  `json:"serialNumber,omitempty"`
	InstalledMemory string  `json:"installedMemory,omitempty"`
	PurchasePrice   float64 `json:"purchasePrice,omitempty"`
}

// Quote is a standalone price indication for a single device, produced
// before any basket exists.
type Quote struct {
	ProductID    int     `json:"productId"`
	GrossPremium float64 `json:"grossPremium"`
	NetPremium   float64 `json:"netPremium"`
	LossPremium  float64 `json:"lossPremium,omitempty"`
	Period       string  `json:"period,omitempty"`
}
