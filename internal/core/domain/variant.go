package domain

import (
	"fmt"
	"image/color"
)

// ClassName identifies one of the three genetic variants the detector knows.
type ClassName string

const (
	ClassWT     ClassName = "WT"
	ClassT1C5C1 ClassName = "T1-C5-C1"
	ClassT1C5E5 ClassName = "T1-C5-E5"
)

// Variant is one row of the fixed class table shared by every component.
type Variant struct {
	Index int
	Name  ClassName
	Color color.RGBA
}

var variants = [...]Variant{
	{Index: 0, Name: ClassWT, Color: color.RGBA{R: 255, A: 255}},
	{Index: 1, Name: ClassT1C5C1, Color: color.RGBA{B: 255, A: 255}},
	{Index: 2, Name: ClassT1C5E5, Color: color.RGBA{R: 255, B: 255, A: 255}},
}

// Variants returns the class table in index order. The slice is a copy.
func Variants() []Variant {
	out := make([]Variant, len(variants))
	copy(out, variants[:])
	return out
}

// ClassNames returns the class names in index order.
func ClassNames() []ClassName {
	out := make([]ClassName, 0, len(variants))
	for _, v := range variants {
		out = append(out, v.Name)
	}
	return out
}

func VariantByIndex(index int) (Variant, error) {
	if index < 0 || index >= len(variants) {
		return Variant{}, WrapError(ErrInvalidClassIndex, "lookup variant", fmt.Errorf("index=%d", index))
	}
	return variants[index], nil
}

func VariantByName(name ClassName) (Variant, bool) {
	for _, v := range variants {
		if v.Name == name {
			return v, true
		}
	}
	return Variant{}, false
}

func ParseClassName(raw string) (ClassName, error) {
	v, ok := VariantByName(ClassName(raw))
	if !ok {
		return "", WrapError(ErrInvalidInput, "parse class name", fmt.Errorf("unknown class %q", raw))
	}
	return v.Name, nil
}
