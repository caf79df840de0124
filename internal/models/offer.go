// internal/models/offer.go
package models

import "time"

// OfferStatus is the lifecycle status of a freight offer. The catalog is
// external to the engine; only active offers are eligible for matching.
type OfferStatus string

const (
	OfferStatusActive    OfferStatus = "active"
	OfferStatusMatched   OfferStatus = "matched"
	OfferStatusCancelled OfferStatus = "cancelled"
	OfferStatusExpired   OfferStatus = "expired"
)

// VehicleStatus is the lifecycle status of a vehicle offer.
type VehicleStatus string

const (
	VehicleStatusAvailable VehicleStatus = "available"
	VehicleStatusBooked    VehicleStatus = "booked"
	VehicleStatusExpired   VehicleStatus = "expired"
)

// Coordinates is a WGS84 point.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

// FreightOffer is a posted load seeking transport capacity. Read-only to the
// engine.
type FreightOffer struct {
	ID                  string       `json:"id"`
	CompanyID           string       `json:"companyId"`
	OriginCountry       string       `json:"originCountry"`
	OriginCity          string       `json:"originCity"`
	OriginCoords        *Coordinates `json:"originCoords,omitempty"`
	DestinationCountry  string       `json:"destinationCountry"`
	DestinationCity     string       `json:"destinationCity"`
	DestinationCoords   *Coordinates `json:"destinationCoords,omitempty"`
	WeightKg            float64      `json:"weightKg"`
	RequiredVehicleType string       `json:"requiredVehicleType"`
	LoadingDate         time.Time    `json:"loadingDate"`
	UnloadingDate       time.Time    `json:"unloadingDate"`
	Price               *float64     `json:"price,omitempty"`
	Status              OfferStatus  `json:"status"`
	CreatedAt           time.Time    `json:"createdAt"`
	UpdatedAt           time.Time    `json:"updatedAt"`
}

// VehicleOffer is posted transport capacity seeking a load. Read-only to the
// engine. An empty VehicleType means the vehicle is flexible; a nil
// DestinationCountry means the carrier takes any direction; a nil AvailableTo
// is open-ended availability.
type VehicleOffer struct {
	ID                 string        `json:"id"`
	CompanyID          string        `json:"companyId"`
	CurrentCountry     string        `json:"currentCountry"`
	CurrentCity        string        `json:"currentCity"`
	CurrentCoords      *Coordinates  `json:"currentCoords,omitempty"`
	DestinationCountry string        `json:"destinationCountry,omitempty"`
	CapacityKg         float64       `json:"capacityKg"`
	VehicleType        string        `json:"vehicleType,omitempty"`
	AvailableFrom      time.Time     `json:"availableFrom"`
	AvailableTo        *time.Time    `json:"availableTo,omitempty"`
	PricePerKm         *float64      `json:"pricePerKm,omitempty"`
	Verified           bool          `json:"verified"`
	Status             VehicleStatus `json:"status"`
	ExpiresAt          *time.Time    `json:"expiresAt,omitempty"`
}
