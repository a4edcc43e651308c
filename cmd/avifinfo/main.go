// Copyright 2024 Bjørn Erik Pedersen
// SPDX-License-Identifier: MIT

// Command avifinfo prints the width, height, bit depth, and channel count of
// an AVIF file as JSON.
package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/bep/avifinfo"
)

type result struct {
	Status      string `json:"status"`
	Width       uint32 `json:"width,omitempty"`
	Height      uint32 `json:"height,omitempty"`
	BitDepth    uint32 `json:"bitDepth,omitempty"`
	NumChannels uint32 `json:"numChannels,omitempty"`
}

func main() {
	streamFlag := flag.Bool("stream", false, "parse via a Source reading the file incrementally instead of loading it whole")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: %s [-stream] <file.avif>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	if err := run(flag.Arg(0), *streamFlag); err != nil {
		log.Fatal(err)
	}
}

func run(path string, stream bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var feats avifinfo.Features
	var status avifinfo.Status

	if stream {
		feats, status = avifinfo.GetFromSource(&fileSource{f: f})
	} else {
		data, err := io.ReadAll(f)
		if err != nil {
			return err
		}
		info, err := f.Stat()
		if err != nil {
			return err
		}
		feats, status = avifinfo.GetWithSize(data, uint64(info.Size()))
	}

	out := result{Status: status.String()}
	if status == avifinfo.StatusOk {
		out.Width, out.Height = feats.Width, feats.Height
		out.BitDepth, out.NumChannels = feats.BitDepth, feats.NumChannels
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return err
	}
	if status != avifinfo.StatusOk {
		os.Exit(1)
	}
	return nil
}

// fileSource adapts an *os.File to avifinfo.Source, for the -stream demo
// path; a real caller would back this with a network connection instead.
type fileSource struct {
	f *os.File
}

func (s *fileSource) Read(n int) ([]byte, error) {
	buf := make([]byte, n)
	read, err := io.ReadFull(s.f, buf)
	if read == 0 && errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}

func (s *fileSource) Skip(n int64) error {
	_, err := s.f.Seek(n, io.SeekCurrent)
	return err
}
