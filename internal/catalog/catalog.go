// Package catalog holds the fixed mapping between detector class ids and labels.
package catalog

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
)

// PrimaryID is the generic container class (a car holding the plate). It is
// always detected and drawn without a label.
const PrimaryID = 0

// PlateLabels is the class list of the licence plate model, indexed by class id.
var PlateLabels = []string{
	"car", "number_plate",
	"A", "B", "C", "D", "E", "F", "G", "H", "I", "J", "K", "L", "M",
	"N", "O", "P", "Q", "R", "S", "T", "U", "V", "W", "X", "Y", "Z",
	"1", "2", "3", "4", "5", "6", "7", "8", "9", "0",
}

// UnknownClassError is returned when a label has no entry in the catalog.
type UnknownClassError struct {
	Label string
}

func (e *UnknownClassError) Error() string {
	return fmt.Sprintf("unknown class: %q", e.Label)
}

// Catalog is an immutable bijection between class ids and labels. Build it
// once with New and share it; none of its methods mutate it.
type Catalog struct {
	labels []string
	ids    map[string]int
}

// New builds a catalog where the id of each label is its index in labels.
// Empty and duplicate labels are rejected.
func New(labels []string) (*Catalog, error) {
	c := &Catalog{
		labels: make([]string, len(labels)),
		ids:    make(map[string]int, len(labels)),
	}
	for id, label := range labels {
		if label == "" {
			return nil, fmt.Errorf("class %d has an empty label", id)
		}
		if prev, exists := c.ids[label]; exists {
			return nil, fmt.Errorf("label %q used by classes %d and %d", label, prev, id)
		}
		c.labels[id] = label
		c.ids[label] = id
	}
	return c, nil
}

// Plates returns the built-in licence plate catalog.
func Plates() *Catalog {
	c, err := New(PlateLabels)
	if err != nil {
		panic(err)
	}
	return c
}

// LoadFile reads a class file with one label per line; blank lines are skipped.
func LoadFile(filename string) (*Catalog, error) {
	f, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open class file: %w", err)
	}
	defer f.Close()

	labels := []string{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line != "" {
			labels = append(labels, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read class file: %w", err)
	}
	if len(labels) == 0 {
		return nil, fmt.Errorf("class file %s is empty", filename)
	}
	return New(labels)
}

// Len returns the number of classes.
func (c *Catalog) Len() int {
	return len(c.labels)
}

// Label returns the label of a class id.
func (c *Catalog) Label(id int) (string, bool) {
	if id < 0 || id >= len(c.labels) {
		return "", false
	}
	return c.labels[id], true
}

// LabelOrID returns the label of id, or the id itself when it is not in the catalog.
func (c *Catalog) LabelOrID(id int) string {
	if label, ok := c.Label(id); ok {
		return label
	}
	return fmt.Sprintf("%d", id)
}

// ID returns the class id of a label.
func (c *Catalog) ID(label string) (int, bool) {
	id, ok := c.ids[label]
	return id, ok
}

// Contains reports whether id is a known class.
func (c *Catalog) Contains(id int) bool {
	return id >= 0 && id < len(c.labels)
}

// IsPrimary reports whether id is the unlabelled container class.
func (c *Catalog) IsPrimary(id int) bool {
	return id == PrimaryID
}

// MapLabelsToIds translates a label keyed count map into an id keyed one.
func (c *Catalog) MapLabelsToIds(byLabel map[string]int) (map[int]int, error) {
	byID := make(map[int]int, len(byLabel))

	// Iterate in sorted order so the reported unknown label is deterministic.
	labels := make([]string, 0, len(byLabel))
	for label := range byLabel {
		labels = append(labels, label)
	}
	sort.Strings(labels)

	for _, label := range labels {
		id, ok := c.ids[label]
		if !ok {
			return nil, &UnknownClassError{Label: label}
		}
		byID[id] = byLabel[label]
	}
	return byID, nil
}
