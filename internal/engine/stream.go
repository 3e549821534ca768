package engine

import "bytes"

// LineDecoder собирает байтовые чанки потокового тела ответа и выдает
// завершенные строки. Граница чанка может проходить посреди JSON-строки —
// незавершенный хвост остается в буфере до следующего Push.
type LineDecoder struct {
	buf []byte
}

// Push добавляет чанк и возвращает все полные строки (без завершающего \n).
// Пустые строки отбрасываются.
func (d *LineDecoder) Push(chunk []byte) [][]byte {
	d.buf = append(d.buf, chunk...)

	var lines [][]byte
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		line := make([]byte, i)
		copy(line, d.buf[:i])
		d.buf = d.buf[i+1:]

		if len(bytes.TrimSpace(line)) > 0 {
			lines = append(lines, line)
		}
	}
	return lines
}

// Flush отдает накопленный хвост после конца потока: финальная строка
// без перевода строки — тоже полная строка.
func (d *LineDecoder) Flush() []byte {
	rest := bytes.TrimSpace(d.buf)
	d.buf = nil
	if len(rest) == 0 {
		return nil
	}
	return rest
}
