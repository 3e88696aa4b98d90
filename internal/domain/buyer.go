package domain

import "time"

// City enumerates the regions served by the intake pipeline.
type City string

const (
	CityChandigarh City = "Chandigarh"
	CityMohali     City = "Mohali"
	CityZirakpur   City = "Zirakpur"
	CityPanchkula  City = "Panchkula"
	CityOther      City = "Other"
)

// PropertyType enumerates the kinds of property a lead is interested in.
type PropertyType string

const (
	PropertyApartment PropertyType = "Apartment"
	PropertyVilla     PropertyType = "Villa"
	PropertyPlot      PropertyType = "Plot"
	PropertyOffice    PropertyType = "Office"
	PropertyRetail    PropertyType = "Retail"
)

// RequiresBHK reports whether the property type carries a bedroom count.
func (p PropertyType) RequiresBHK() bool {
	return p == PropertyApartment || p == PropertyVilla
}

// BHK is the bedroom-hall-kitchen sizing of a residential property.
type BHK string

const (
	BHKOne    BHK = "1"
	BHKTwo    BHK = "2"
	BHKThree  BHK = "3"
	BHKFour   BHK = "4"
	BHKStudio BHK = "Studio"
)

// Purpose distinguishes buy from rent leads.
type Purpose string

const (
	PurposeBuy  Purpose = "Buy"
	PurposeRent Purpose = "Rent"
)

// Timeline is the lead's purchase horizon.
type Timeline string

const (
	TimelineZeroToThree Timeline = "0-3m"
	TimelineThreeToSix  Timeline = "3-6m"
	TimelineMoreThanSix Timeline = ">6m"
	TimelineExploring   Timeline = "Exploring"
)

// Source records how the lead reached us.
type Source string

const (
	SourceWebsite  Source = "Website"
	SourceReferral Source = "Referral"
	SourceWalkIn   Source = "Walk-in"
	SourceCall     Source = "Call"
	SourceOther    Source = "Other"
)

// BuyerStatus enumerates pipeline stages for a lead.
type BuyerStatus string

const (
	StatusNew         BuyerStatus = "New"
	StatusQualified   BuyerStatus = "Qualified"
	StatusContacted   BuyerStatus = "Contacted"
	StatusVisited     BuyerStatus = "Visited"
	StatusNegotiation BuyerStatus = "Negotiation"
	StatusConverted   BuyerStatus = "Converted"
	StatusDropped     BuyerStatus = "Dropped"
)

// Buyer is the aggregate for a prospective buyer lead.
type Buyer struct {
	ID           string       `json:"id"`
	FullName     string       `json:"fullName"`
	Email        *string      `json:"email,omitempty"`
	Phone        string       `json:"phone"`
	City         City         `json:"city"`
	PropertyType PropertyType `json:"propertyType"`
	BHK          *BHK         `json:"bhk,omitempty"`
	Purpose      Purpose      `json:"purpose"`
	BudgetMin    *int64       `json:"budgetMin,omitempty"`
	BudgetMax    *int64       `json:"budgetMax,omitempty"`
	Timeline     Timeline     `json:"timeline"`
	Source       Source       `json:"source"`
	Status       BuyerStatus  `json:"status"`
	Notes        *string      `json:"notes,omitempty"`
	Tags         []string     `json:"tags,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}
