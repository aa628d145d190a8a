package internal

import (
	"io"

	"github.com/xiaobogaga/javasst/classfile"
)

// Generate builds the class file of an analyzed class. The constant pool is complete and
// frozen before any method body is generated.
func Generate(class *Class) (*classfile.File, error) {
	pool, err := BuildConstantPool(class)
	if err != nil {
		return nil, err
	}
	fields, err := buildFields(class, pool)
	if err != nil {
		return nil, err
	}
	methods, err := buildMethods(class, pool)
	if err != nil {
		return nil, err
	}
	return &classfile.File{
		MinorVersion: classfile.MinorVersion,
		MajorVersion: classfile.MajorVersion,
		Pool:         pool.Entries(),
		AccessFlags:  classfile.AccPublic,
		ThisClass:    pool.ThisClass(),
		SuperClass:   pool.SuperClass(),
		Fields:       fields,
		Methods:      methods,
	}, nil
}

// WriteClass generates the class file and writes it to w.
func WriteClass(w io.Writer, class *Class) error {
	file, err := Generate(class)
	if err != nil {
		return err
	}
	_, err = file.WriteTo(w)
	return err
}
