// Package tail reads and follows the supervised child's log file.
package tail

import (
	"bufio"
	"fmt"
	"os"
)

// LastLines returns up to n trailing lines of the file at path, oldest
// first. A final line without a trailing newline still counts.
func LastLines(path string, n int) ([]string, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	ring := make([]string, n)
	count := 0
	for scanner.Scan() {
		ring[count%n] = scanner.Text()
		count++
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan %s: %w", path, err)
	}
	if count == 0 {
		return nil, nil
	}

	size := count
	if size > n {
		size = n
	}
	out := make([]string, 0, size)
	for i := count - size; i < count; i++ {
		out = append(out, ring[i%n])
	}
	return out, nil
}
