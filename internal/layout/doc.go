// Package layout decides where newly imported items appear in the virtual
// tree. The builtin layout groups by media class with secondary branches
// for year, directory, artist and album; it talks to the content facade
// through a narrow Adder interface so filing goes through the container
// chain cache.
package layout
