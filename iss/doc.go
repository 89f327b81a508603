// Copyright 2025 Stock Parfait

// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at

//     http://www.apache.org/licenses/LICENSE-2.0

// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package iss implements the generic table API of the Moscow Exchange ISS
// (Information & Statistical Server).
//
// Official documentation is at https://fs.moex.com/files/8888 .
//
// Each ISS response carries one or more named table blocks, each an ordered
// list of column names and an ordered list of row value lists. An Endpoint
// declares which block to read and the columns it expects; the declared
// schema is checked against every received page, and a mismatch fails the
// fetch rather than propagating loosely-typed values downstream.
//
// The server returns at most a bounded number of rows per request. The
// client pages through a resource with 'start' offsets until it receives a
// page shorter than the page size, retrying transient failures of each page
// with exponential backoff. Paging is transparent both in Query.Fetch, which
// assembles all pages into a single table, and in the RowIterator returned
// by Query.Read.
//
// APIs for specific ISS sections, such as trading history and bondization,
// are implemented in the subpackages.
package iss
