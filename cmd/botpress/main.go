// Command botpress runs conversational bots defined as flow files.
package main

func main() {
	Execute()
}
