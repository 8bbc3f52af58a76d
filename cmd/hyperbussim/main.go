// Command hyperbussim simulates a HyperBus read controller serving a stream
// of word reads from one or more HyperFlash or HyperRAM devices.
package main

func main() {
	Execute()
}
