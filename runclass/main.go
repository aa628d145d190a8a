package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/xiaobogaga/javasst/classfile"
	"github.com/xiaobogaga/javasst/vm"
)

// A simple program to run one static method of a compiled class, like
// `runclass -m fact Fact.class 10`.

var (
	methodName = flag.String("m", "main", "the method to invoke")
	construct  = flag.Bool("init", true, "whether run <init> before the method")
	maxSteps   = flag.Int("steps", vm.DefaultMaxSteps, "the maximum number of executed instructions")
	verbose    = flag.Bool("v", false, "whether trace every executed instruction")
)

func main() {
	flag.Parse()
	if flag.NArg() < 1 {
		fmt.Println("[Runclass]: usage: runclass [-m method] [-init=true] [-steps n] [-v] <file.class> [int args...]")
		os.Exit(2)
	}
	path := flag.Arg(0)
	args := make([]int32, 0, flag.NArg()-1)
	for _, arg := range flag.Args()[1:] {
		value, err := strconv.ParseInt(arg, 10, 32)
		if err != nil {
			fmt.Printf("[Runclass]: argument %s is not an int\n", arg)
			os.Exit(2)
		}
		args = append(args, int32(value))
	}
	f, err := os.Open(path)
	if err != nil {
		fmt.Printf("[Runclass]: failed to open class: %s, err: %v\n", path, err)
		os.Exit(1)
	}
	defer f.Close()
	file, err := classfile.Read(f)
	if err != nil {
		fmt.Printf("[Runclass]: failed to read class: %s, err: %v\n", path, err)
		os.Exit(1)
	}
	opts := vm.Options{MaxSteps: *maxSteps}
	if *verbose {
		opts.Trace = log.New(os.Stderr, "", 0)
	}
	machine, err := vm.Load(file, opts)
	if err != nil {
		fmt.Printf("[Runclass]: failed to load class: %s, err: %v\n", path, err)
		os.Exit(1)
	}
	if *construct {
		err = machine.Construct()
		if err != nil {
			fmt.Printf("[Runclass]: failed to run <init>, err: %v\n", err)
			os.Exit(1)
		}
	}
	result, err := machine.Invoke(*methodName, args...)
	if err != nil {
		fmt.Printf("[Runclass]: failed to invoke %s, err: %v\n", *methodName, err)
		os.Exit(1)
	}
	fmt.Println(result)
}
