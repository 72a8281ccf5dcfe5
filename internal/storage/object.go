// Package storage defines the object records and the error taxonomy shared by
// all storage backends.
package storage

import (
	"fmt"
	"sort"

	"github.com/cloudfiles/cloudfiles/internal/objectpath"
)

// ObjectType is the type of an object. Most backends only deal in files; some
// also surface physical directories and symlinks.
type ObjectType uint8

const (
	// TypeFile is a regular file.
	TypeFile ObjectType = iota
	// TypeDirectory is a physical directory.
	TypeDirectory
	// TypeSymlink is a symbolic link.
	TypeSymlink
	// TypeUnknown is a physical object of unknown type.
	TypeUnknown
)

func (t ObjectType) String() string {
	switch t {
	case TypeFile:
		return "file"
	case TypeDirectory:
		return "dir"
	case TypeSymlink:
		return "symlink"
	default:
		return "unknown"
	}
}

// typeOrder gives the sort position of each type when paths tie: directories
// first, then files, then symlinks, then unknowns. Deleting in reverse of this
// order removes children before their directories.
func (t ObjectType) typeOrder() int {
	switch t {
	case TypeDirectory:
		return 0
	case TypeFile:
		return 1
	case TypeSymlink:
		return 2
	default:
		return 3
	}
}

// Compare orders object types directories-first.
func (t ObjectType) Compare(other ObjectType) int {
	return t.typeOrder() - other.typeOrder()
}

// Object is a record describing an object stored in a backend.
type Object struct {
	Path objectpath.Path
	Type ObjectType
	Size uint64
}

func (o Object) String() string {
	return fmt.Sprintf("%-8s%6d %s", o.Type, o.Size, o.Path)
}

// Compare orders objects by path, then size, then type.
func (o Object) Compare(other Object) int {
	if c := o.Path.Compare(other.Path); c != 0 {
		return c
	}
	if o.Size != other.Size {
		if o.Size < other.Size {
			return -1
		}
		return 1
	}
	return o.Type.Compare(other.Type)
}

// SortObjects sorts objects in place by Compare order.
func SortObjects(objects []Object) {
	sort.Slice(objects, func(i, j int) bool {
		return objects[i].Compare(objects[j]) < 0
	})
}
