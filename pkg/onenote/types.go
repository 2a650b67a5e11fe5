package onenote

import "time"

type listResponse[T any] struct {
	Value    []T    `json:"value"`
	NextLink string `json:"@odata.nextLink"`
}

type Notebook struct {
	ID                   string    `json:"id"`
	DisplayName          string    `json:"displayName"`
	LastModifiedDateTime time.Time `json:"lastModifiedDateTime"`
}

type Section struct {
	ID                   string    `json:"id"`
	DisplayName          string    `json:"displayName"`
	LastModifiedDateTime time.Time `json:"lastModifiedDateTime"`
}

type Page struct {
	ID                   string    `json:"id"`
	Title                string    `json:"title"`
	CreatedDateTime      time.Time `json:"createdDateTime"`
	LastModifiedDateTime time.Time `json:"lastModifiedDateTime"`
}

// User is the subset of the /me resource used to confirm which account a token belongs to.
type User struct {
	ID                string `json:"id"`
	DisplayName       string `json:"displayName"`
	UserPrincipalName string `json:"userPrincipalName"`
}

// DeviceCode is what the operator needs to complete sign-in on another device.
type DeviceCode struct {
	UserCode                string
	VerificationURI         string
	VerificationURIComplete string
	ExpiresAt               time.Time
	Interval                time.Duration
}
