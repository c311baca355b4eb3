// Package signal generates deterministic test traces: impulses, sines,
// spike trains convolved with a kernel, DC offsets, and seeded noise.
package signal
