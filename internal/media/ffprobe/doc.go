// Package ffprobe runs ffprobe against recordings and decodes the stream and
// container fields the compression verifier looks at.
package ffprobe
