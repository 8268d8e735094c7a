/*
Copyright © 2026 NAME HERE <EMAIL ADDRESS>
*/
package main

import "healthchat/cmd"

func main() {
	cmd.Execute()
}
