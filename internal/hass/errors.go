package hass

import "errors"

var (
	// ErrInvalidDeviceID is returned when a device identifier contains
	// anything other than lowercase alphanumerics separated by single hyphens.
	ErrInvalidDeviceID = errors.New("hass: invalid device id")

	// ErrInvalidPrefix is returned for an empty or wildcard-bearing topic prefix.
	ErrInvalidPrefix = errors.New("hass: invalid topic prefix")
)
