package detection

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/banshee-data/incident.report/internal/geometry"
)

func TestSplit(t *testing.T) {
	objects := []Object{
		{Class: ClassPerson, Box: geometry.Box{X2: 1, Y2: 1}},
		{Class: ClassCar, Confidence: 0.9},
		{Class: "traffic light"},
		{Class: ClassMotorcycle},
		{Class: ClassPerson, Confidence: 0.5},
		{Class: ClassBus},
	}

	vehicles, persons := Split(objects)

	wantVehicles := []Object{{Class: ClassCar, Confidence: 0.9}, {Class: ClassMotorcycle}, {Class: ClassBus}}
	if diff := cmp.Diff(vehicles, wantVehicles); diff != "" {
		t.Errorf("vehicles mismatch (-got +want):\n%s", diff)
	}
	assert.Len(t, persons, 2)
	assert.Equal(t, 0.5, persons[1].Confidence)
}

func TestIsFallenMotorcycle(t *testing.T) {
	tests := []struct {
		name string
		obj  Object
		want bool
	}{
		{"wide motorcycle", Object{Class: ClassMotorcycle, Box: geometry.Box{X2: 150, Y2: 100}}, true},
		{"upright motorcycle", Object{Class: ClassMotorcycle, Box: geometry.Box{X2: 60, Y2: 100}}, false},
		{"exactly 1.2", Object{Class: ClassMotorcycle, Box: geometry.Box{X2: 120, Y2: 100}}, false},
		{"wide car", Object{Class: ClassCar, Box: geometry.Box{X2: 300, Y2: 100}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsFallenMotorcycle(tt.obj))
		})
	}
}

func TestIDs(t *testing.T) {
	assert.Equal(t, "Vehicle-1", VehicleID(0))
	assert.Equal(t, "Vehicle-12", VehicleID(11))
	assert.Equal(t, "Person-3", PersonID(2))
}

func TestAgeCategory(t *testing.T) {
	cases := map[int]string{0: CategoryChild, 13: CategoryChild, 14: CategoryAdult, 59: CategoryAdult, 60: CategorySenior, 90: CategorySenior}
	for age, want := range cases {
		assert.Equal(t, want, AgeCategory(age), "age %d", age)
	}
}

func TestDemographicsNormalized(t *testing.T) {
	age := 8
	got := Demographics{Gender: "female", Age: &age}.Normalized()
	assert.Equal(t, CategoryChild, got.Category)
	assert.Equal(t, DefaultRole, got.Role)
	assert.Equal(t, DefaultRisk, got.Risk)

	empty := Demographics{}.Normalized()
	assert.Equal(t, Unknown, empty.Gender)
	assert.Equal(t, Unknown, empty.Category)

	kept := Demographics{Role: "cyclist", Risk: "high", Category: CategoryAdult}.Normalized()
	assert.Equal(t, "cyclist", kept.Role)
	assert.Equal(t, "high", kept.Risk)
	assert.Equal(t, CategoryAdult, kept.Category)
}

func TestFilterPlates(t *testing.T) {
	got := FilterPlates([]PlateCandidate{
		{Text: "ab 123 cd", Confidence: 0.876},
		{Text: "XY1", Confidence: 0.99},
		{Text: "LOWCONF1", Confidence: 0.4},
		{Text: " kl 9 9 8 ", Confidence: 0.41},
	})
	want := []Plate{
		{Plate: "AB123CD", Confidence: 0.88},
		{Plate: "KL998", Confidence: 0.41},
	}
	if diff := cmp.Diff(got, want); diff != "" {
		t.Errorf("FilterPlates() mismatch (-got +want):\n%s", diff)
	}

	assert.Empty(t, FilterPlates(nil))
}
