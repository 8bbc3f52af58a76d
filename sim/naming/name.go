// Package naming defines how simulation elements are named.
package naming

import (
	"strconv"
	"strings"
)

// Named describes an object that has a name.
type Named interface {
	// Name returns the name of the object.
	Name() string
}

// NameMustBeValid panics if the name does not follow the naming convention.
// Names are dot separated, every element starts with a capital letter, and
// series elements use square brackets, as in "Board.Flash[1].Ctrl".
func NameMustBeValid(name string) {
	for _, token := range strings.Split(name, ".") {
		tokenMustBeValid(name, token)
	}
}

func tokenMustBeValid(name, token string) {
	elem := token
	if i := strings.Index(token, "["); i >= 0 {
		indexMustBeValid(name, token[i:])
		elem = token[:i]
	}

	if elem == "" {
		panic("name " + name + " is not valid: empty element")
	}

	if strings.ContainsAny(elem, "_\"'- ") {
		panic("name " + name + " is not valid: bad character in " + elem)
	}

	if elem[0] < 'A' || elem[0] > 'Z' {
		panic("name " + name + " is not valid: " + elem +
			" must start with a capital letter")
	}
}

func indexMustBeValid(name, indices string) {
	for indices != "" {
		end := strings.Index(indices, "]")
		if indices[0] != '[' || end < 0 {
			panic("name " + name + " is not valid: brackets must match")
		}

		if _, err := strconv.Atoi(indices[1:end]); err != nil {
			panic("name " + name + " is not valid: index must be integer")
		}

		indices = indices[end+1:]
	}
}

// BuildName builds a name from a parent name and an element name.
func BuildName(parentName, elementName string) string {
	if parentName == "" {
		return elementName
	}

	return parentName + "." + elementName
}

// BuildNameWithIndex builds a name from a parent name, an element name and an
// index.
func BuildNameWithIndex(parentName, elementName string, index int) string {
	return BuildName(parentName, elementName+"["+strconv.Itoa(index)+"]")
}
