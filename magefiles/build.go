//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Builds the phex example into bin/.
func (Build) Example() error {
	_, err := executeCmd("go", withArgs("build", "-o", "bin/phex", "./examples/phex"), withStream())
	return err
}

// Vets every package.
func (Build) Vet() error {
	_, err := executeCmd("go", withArgs("vet", "./..."), withStream())
	return err
}

type Test mg.Namespace

// Runs the GPU-free test suite with the race detector.
func (Test) All() error {
	_, err := executeCmd("go", withArgs("test", "-race", "./..."), withStream())
	return err
}

// Runs the packer tests, including the parallel path.
func (Test) Packer() error {
	_, err := executeCmd("go", withArgs("test", "-run", "Pack", "-v", "."), withDir("engine/instance"), withStream())
	return err
}
