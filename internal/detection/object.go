// Package detection defines the perception vocabulary the reasoning engine
// consumes and the contracts of the collaborators that produce it.
package detection

import (
	"fmt"

	"github.com/banshee-data/incident.report/internal/geometry"
)

// Object classes recognised by the reasoning engine.
const (
	ClassCar        = "car"
	ClassTruck      = "truck"
	ClassBus        = "bus"
	ClassMotorcycle = "motorcycle"
	ClassBicycle    = "bicycle"
	ClassVan        = "van"
	ClassPerson     = "person"
)

// Object is a single detector output.
type Object struct {
	Class      string       `json:"class_name"`
	Confidence float64      `json:"confidence"`
	Box        geometry.Box `json:"box"`
}

// IsVehicle reports whether the class belongs to the vehicle vocabulary.
func IsVehicle(class string) bool {
	switch class {
	case ClassCar, ClassTruck, ClassBus, ClassMotorcycle, ClassBicycle, ClassVan:
		return true
	}
	return false
}

// Split partitions detections into vehicles and persons, keeping detector
// order within each group. Other classes are dropped.
func Split(objects []Object) (vehicles, persons []Object) {
	for _, o := range objects {
		switch {
		case IsVehicle(o.Class):
			vehicles = append(vehicles, o)
		case o.Class == ClassPerson:
			persons = append(persons, o)
		}
	}
	return vehicles, persons
}

// IsFallenMotorcycle reports whether o is a motorcycle lying on its side,
// detected by a box noticeably wider than it is tall.
func IsFallenMotorcycle(o Object) bool {
	return o.Class == ClassMotorcycle && o.Box.Width() > 1.2*o.Box.Height()
}

// VehicleID returns the frame-local identifier of the i-th vehicle.
// Identifiers are not stable across frames.
func VehicleID(i int) string { return fmt.Sprintf("Vehicle-%d", i+1) }

// PersonID returns the frame-local identifier of the i-th person.
func PersonID(i int) string { return fmt.Sprintf("Person-%d", i+1) }
