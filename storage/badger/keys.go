// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package badger

const (
	vectorRecordPrefix = "vrec:"
	vectorDocPrefix    = "vdoc:"
	docStatePrefix     = "dstate:"

	// separates a document ID from a record ID in index keys; document IDs
	// are percent-encoded ASCII so the byte never appears inside one.
	keySep = "\x00"
)

func makeRecordKey(id string) []byte {
	return []byte(vectorRecordPrefix + id)
}

func makeDocIndexKey(documentID, recordID string) []byte {
	return []byte(vectorDocPrefix + documentID + keySep + recordID)
}

func makePartialDocIndexKey(documentID string) []byte {
	return []byte(vectorDocPrefix + documentID + keySep)
}

func recordIDFromDocIndexKey(key []byte, documentID string) string {
	return string(key[len(makePartialDocIndexKey(documentID)):])
}

func makeStateKey(documentID string) []byte {
	return []byte(docStatePrefix + documentID)
}
