// Command director serves and replays conversation directives.
package main

func main() {
	Execute()
}
