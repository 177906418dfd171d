// Package codec
// Author: momentics <momentics@gmail.com>
//
// Block compression and growable byte buffers backed by a segpool pool.
//
// Every []byte handed out by this package is rented; give it back with
// Release (or Buffer.Release) once done. Outputs are resliced to their
// content length, which the pool accepts on return.
package codec
