// Package crawler reads the catalog's pages.
//
// # Components
//
//   - ParseMakeResponse / ParseModelResponse: decode the AJAX hierarchy
//     endpoints, which answer with a script that injects an HTML fragment
//     into the page. The fragment is pulled out of the first
//     content-replacement call and its anchors become hierarchy edges.
//   - Extractor: reads part rows out of a rendered application page and
//     enriches a record from its detail page. Selectors come from the site
//     file; a category only differs from another by its selector table.
//   - URLBuilder: expands the site's endpoint templates.
//
// Nothing in this package performs I/O; pages are fetched by package fetch
// and handed over as bytes.
package crawler
