// Package loader turns a repository directory into raw documents.
//
// Recognized extensions are .txt, .py, .ipynb and .md. Notebooks are rendered
// cell by cell and markdown is reduced to plain text; other files are read
// verbatim.
package loader
