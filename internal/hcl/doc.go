// Package hcl provides the HCL implementation of config.Decoder. An HCL
// config file is a flat list of attributes whose values may be arbitrary
// expressions, evaluated with go-cty.
//
// Expressions can reference three variables:
//
//	inline  the command-line configuration (for example inline.type)
//	env     the process environment
//	cwd     the directory holding the config file
//
// A file that references inline is decoded into a factory export, evaluated
// once the inline configuration is known; any other file is evaluated
// immediately into a static export.
package hcl
