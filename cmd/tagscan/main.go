// Command tagscan reads tags and audio properties from audio files and
// prints them as json, csv, tsv, or tabularcsv.
package main

import "github.com/zvukmeta/tagscan/cmd"

func main() {
	cmd.Execute()
}
