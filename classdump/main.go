package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/xiaobogaga/javasst/classfile"
)

// a simple program prints a class file the way javap -v does, and checks its structure.

var (
	inputPath = flag.String("i", "", "the class file to print")
	withCode  = flag.Bool("code", true, "whether print the instructions of every method")
	verify    = flag.Bool("verify", true, "whether check constant pool tags and branch targets")
)

func main() {
	flag.Parse()
	path := *inputPath
	if path == "" && flag.NArg() == 1 {
		path = flag.Arg(0)
	}
	if path == "" {
		fmt.Fprintln(os.Stderr, "usage: classdump [-code=false] [-verify=false] <class file>")
		os.Exit(2)
	}
	f, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open file: %s, err: %v\n", path, err)
		os.Exit(1)
	}
	defer f.Close()
	file, err := classfile.Read(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to parse file: %s, err: %v\n", path, err)
		os.Exit(1)
	}
	if *verify {
		if err = classfile.Verify(file); err != nil {
			fmt.Fprintf(os.Stderr, "invalid class file: %v\n", err)
			os.Exit(1)
		}
	}
	if err = classfile.Dump(os.Stdout, file, *withCode); err != nil {
		fmt.Fprintf(os.Stderr, "failed to print file: %v\n", err)
		os.Exit(1)
	}
}
