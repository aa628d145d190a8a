package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/xiaobogaga/javasst/compiler/internal"
)

// javasstc compiles one JavaSST source file into <class>.class.

var (
	dot       = flag.Bool("dot", false, "also write a graphviz <class>.dot of the declarations and trees")
	verbose   = flag.Bool("v", false, "print the progress of each compiler stage")
	outputDir = flag.String("o", ".", "the directory the class file is written to")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [flags] <source file>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}
	opts := internal.Options{OutputDir: *outputDir, Dot: *dot}
	if *verbose {
		opts.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}
	classPath, err := internal.Compile(flag.Arg(0), opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if *verbose {
		fmt.Printf("compiled %s\n", classPath)
	}
}
