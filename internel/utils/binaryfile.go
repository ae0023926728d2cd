package utils

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
)

func ReadBinary[T any](filename string) ([]T, error) {

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	fileInfo, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to get file info: %w", err)
	}

	var zero T
	numElements := int(fileInfo.Size()) / binary.Size(zero)
	data := make([]T, numElements)

	err = binary.Read(file, binary.LittleEndian, &data)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	return data, nil
}

func WriteBinary[T any](filename string, data []T) error {

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	err = binary.Write(file, binary.LittleEndian, data)
	if err != nil {
		file.Close()
		return fmt.Errorf("failed to write file: %w", err)
	}

	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	return nil
}

// ReadBytes reads exactly n bytes from the start of filename.
func ReadBytes(filename string, n int) ([]byte, error) {

	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	data := make([]byte, n)
	if _, err := io.ReadFull(file, data); err != nil {
		return nil, fmt.Errorf("failed to read %d bytes: %w", n, err)
	}

	return data, nil
}
