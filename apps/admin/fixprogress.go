package main

import (
	"context"
	"fmt"
)

// fixProgress repairs finalized projects whose progress never landed on 100.
// Safe to run repeatedly.
func (cli *commandLine) fixProgress() error {
	n, err := cli.prjRepo.FixFinalizedProgress(context.Background(), nil)
	if err != nil {
		return err
	}
	fmt.Printf("repaired %d project(s)\n", n)
	return nil
}
