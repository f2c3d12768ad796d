// Command kaizen creates, inspects and drives session files.
package main

func main() {
	Execute()
}
