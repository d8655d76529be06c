// Package fuzztests houses Go fuzz harnesses that exercise the text
// half of the pipeline (source -> parse -> convert). Its goal is to
// smoke test robustness and guard against panics on arbitrary inputs.
//
// It does not generate corpora, write files or run the CLI.
package fuzztests
