// Package stream implements the per-session video relay pipeline: a frame
// source backed by OpenCV, the downscale/encode stage, the capture-loop
// worker with frame-skip and rate limiting, and the session registry that
// owns at most one worker per viewer session.
package stream
