/*
Package compiler is the whole compilation pipeline.

	Typed Tree Description (toml)
		-> front.Decode ->
	Resolved Syntax Tree (ast)
		-> layout.Plan ->
	Field Offsets, Static Region Size
		-> back.CompilePackage ->
	Instruction Stream (asm): runtime stubs, method table, method bodies
		-> Link ->
	Image (exe.Image)
		-> exe.WriteFile ->
	Binary Executable (ELF64 x86-64)

Symbol Map (symmap) is built from the same compiled package.
*/
package compiler
