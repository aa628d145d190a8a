package internal

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/xiaobogaga/javasst/classfile"
)

type Options struct {
	// OutputDir receives <class>.class, and <class>.dot when Dot is set. Defaults to ".".
	OutputDir string
	Dot       bool
	// Logger receives stage progress. Nil discards it.
	Logger *log.Logger
}

func (opts Options) logger() *log.Logger {
	if opts.Logger == nil {
		return log.New(io.Discard, "", 0)
	}
	return opts.Logger
}

// Compile compiles the source file at path and writes the class file. It returns the path of
// the written class file.
func Compile(path string, opts Options) (string, error) {
	logger := opts.logger()
	rd, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("compiler: open %s: %w", path, err)
	}
	defer rd.Close()
	logger.Println("compiler: start parser at path: " + path)
	class, file, err := Build(rd, logger)
	if err != nil {
		return "", err
	}
	dir := opts.OutputDir
	if dir == "" {
		dir = "."
	}
	if opts.Dot {
		dotPath := filepath.Join(dir, class.Name+".dot")
		logger.Println("compiler: write graph to " + dotPath)
		err = writeFile(dotPath, func(w io.Writer) error { return WriteDot(w, class) })
		if err != nil {
			return "", err
		}
	}
	classPath := filepath.Join(dir, class.Name+".class")
	logger.Println("compiler: write class file to " + classPath)
	err = writeFile(classPath, func(w io.Writer) error {
		_, err := file.WriteTo(w)
		return err
	})
	if err != nil {
		return "", err
	}
	return classPath, nil
}

// Build runs the whole pipeline in memory: parse, reachability, name resolution, semantic
// analysis and class file generation. The first error stops it.
func Build(rd io.Reader, logger *log.Logger) (*Class, *classfile.File, error) {
	if logger == nil {
		logger = Options{}.logger()
	}
	parser := &Parser{}
	class, err := parser.ParseReader(rd)
	if err != nil {
		return nil, nil, err
	}
	logger.Printf("compiler: parsed class %s with %d declarations", class.Name, class.NumDecls())
	// Statements after a return are reported before any name in them is looked up.
	logger.Println("compiler: start reachability check")
	err = CheckReachability(class)
	if err != nil {
		return nil, nil, err
	}
	logger.Println("compiler: start name resolution")
	err = Resolve(class)
	if err != nil {
		return nil, nil, err
	}
	logger.Println("compiler: start semantic analysis")
	err = Analyze(class)
	if err != nil {
		return nil, nil, err
	}
	logger.Println("compiler: start generate codes")
	file, err := Generate(class)
	if err != nil {
		return nil, nil, err
	}
	logger.Printf("compiler: generated %d constants, %d fields, %d methods", len(file.Pool), len(file.Fields),
		len(file.Methods))
	return class, file, nil
}

func writeFile(path string, write func(w io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("compiler: create %s: %w", path, err)
	}
	err = write(f)
	closeErr := f.Close()
	if err != nil {
		return fmt.Errorf("compiler: write %s: %w", path, err)
	}
	if closeErr != nil {
		return fmt.Errorf("compiler: close %s: %w", path, closeErr)
	}
	return nil
}
