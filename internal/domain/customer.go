package domain

// Customer is the policy holder record sent to and returned by the remote
// API. Required fields and maximum lengths follow the underwriter's
// customer contract; validation runs locally before any network call so a
// bad record never costs a round trip.
type Customer struct {
	ID           int    `json:"id,omitempty"`
	Title        string `json:"title,omitempty" validate:"max=4"`
	GivenName    string `json:"givenName" validate:"required,max=25"`
	LastName     string `json:"lastName" validate:"required,max=30"`
	CompanyName  string `json:"companyName,omitempty" validate:"max=250"`
	Address1     string `json:"address1" validate:"required,max=25"`
	Address2     string `json:"address2,omitempty" validate:"max=25"`
	Address3     string `json:"address3,omitempty" validate:"max=25"`
	Address4     string `json:"address4,omitempty" validate:"max=25"`
	PostCode     string `json:"postCode" validate:"required,max=9"`
	Email        string `json:"email" validate:"required,email,max=75"`
	MobileNumber string `json:"mobileNumber" validate:"required,max=25"`
	HomePhone    string `json:"homePhone,omitempty" validate:"max=25"`
	DateOfBirth  string `json:"dateOfBirth,omitempty"`
	ExternalID   string `json:"externalId,omitempty" validate:"max=75"`
}
