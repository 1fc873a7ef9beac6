//go:build mage

package main

import (
	"github.com/magefile/mage/mg"
)

type Build mg.Namespace

// Compiles the GLSL shaders used by the vulkan backend into SPIR-V.
func (Build) Shaders() error {
	if _, err := executeCmd("glslc", withArgs("assets/shaders/shapes.vert", "-o", "assets/shaders/shapes.vert.spv"), withStream()); err != nil {
		return err
	}
	if _, err := executeCmd("glslc", withArgs("assets/shaders/shapes.frag", "-o", "assets/shaders/shapes.frag.spv"), withStream()); err != nil {
		return err
	}
	return nil
}

// Builds the shapes testbed binary.
func (Build) Binary() error {
	if _, err := executeCmd("go", withArgs("build", "-o", "bin/prisma", "."), withStream()); err != nil {
		return err
	}
	return nil
}
