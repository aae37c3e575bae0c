// Command devicekv reads, writes and watches a devicekv store from the shell.
package main

import "github.com/jacentio/devicekv/internal/cli"

func main() {
	cli.Execute()
}
