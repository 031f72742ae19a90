//go:build mage

package main

import (
	"fmt"

	"github.com/magefile/mage/mg"
)

type Run mg.Namespace

// Runs the phex example with examples/phex/phex.toml.
func (Run) Example() error {
	fmt.Println("Run phex...")
	_, err := executeCmd("go", withArgs("run", "./examples/phex", "-config", "examples/phex/phex.toml"), withStream())
	return err
}

// Runs the phex example with the given strategy and instance count.
func (Run) Strategy(kind string, instances int) error {
	mg.Deps(Build.Example)
	_, err := executeCmd("bin/phex", withArgs("-strategy", kind, "-instances", fmt.Sprint(instances)), withStream())
	return err
}
