// Package picker drives the map screen used to choose a reminder's location.
//
// The camera is centered on the device's last known fix, either as soon as
// the map is ready or only after location permission has been granted,
// depending on the CenteringMode. Without a fix the camera falls back to a
// default location. A long press drops a pin and tapping a point of interest
// selects it; either replaces the previous pin. Confirm hands the selection to
// the reminder editor and navigates back.
package picker
