package task

import (
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/nanocv-go/nanocv/pkg/tensor"
)

// ErrIO is returned when a task's backing data cannot be read or does
// not match the task's declared dimensions, wrapping the underlying
// file/CSV error.
var ErrIO = errors.New("task: io error")

// LoadCSVInto reads rows of the form "target..., input..." from a flat
// CSV file (transparently gzip-decompressed when name ends in .gz) into
// t's given fold: the first t.OutputDims().dims3() product columns
// become the target, the remaining t.InputDims().dims3() product
// columns become the input. maxRows limits how many rows are read (0
// for unlimited), generalizing the teacher's fixed MNIST label+784-pixel
// row format to the task's own declared input/output shape.
func LoadCSVInto(t *MemoryTask, fold Fold, name string, maxRows int) error {
	f, err := os.Open(name)
	if err != nil {
		return fmt.Errorf("task.LoadCSVInto: %w: %w", err, ErrIO)
	}
	defer f.Close()

	var r io.Reader = f
	if isGzipName(name) {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return fmt.Errorf("task.LoadCSVInto: %w: %w", err, ErrIO)
		}
		defer gz.Close()
		r = gz
	}

	inSize := t.InputDims().Planes * t.InputDims().Rows * t.InputDims().Cols
	outSize := t.OutputDims().Planes * t.OutputDims().Rows * t.OutputDims().Cols
	want := inSize + outSize

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	row := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("task.LoadCSVInto: row %d: %w: %w", row, err, ErrIO)
		}
		if len(record) < want {
			return fmt.Errorf("task.LoadCSVInto: row %d: expected at least %d columns, got %d: %w",
				row, want, len(record), ErrIO)
		}

		target := tensor.New(t.OutputDims().dims3()...)
		for i := 0; i < outSize; i++ {
			v, perr := strconv.ParseFloat(record[i], 32)
			if perr != nil {
				return fmt.Errorf("task.LoadCSVInto: row %d, target column %d: %w: %w", row, i, perr, ErrIO)
			}
			target.Data()[i] = tensor.Scalar(v)
		}

		input := tensor.New(t.InputDims().dims3()...)
		for i := 0; i < inSize; i++ {
			v, perr := strconv.ParseFloat(record[outSize+i], 32)
			if perr != nil {
				return fmt.Errorf("task.LoadCSVInto: row %d, input column %d: %w: %w", row, i, perr, ErrIO)
			}
			input.Data()[i] = tensor.Scalar(v)
		}

		if err := t.Push(fold, Sample{Input: input, Target: target, Weight: 1}); err != nil {
			return fmt.Errorf("task.LoadCSVInto: row %d: %w", row, err)
		}

		row++
		if maxRows > 0 && row >= maxRows {
			break
		}
	}
	return nil
}

func isGzipName(name string) bool {
	n := len(name)
	return n >= 3 && name[n-3:] == ".gz"
}
