// Copyright 2025 UMH Systems GmbH
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

// Package models holds the typed entities of the rental application and their
// conversion to and from store documents. The store itself stays generic.
package models

import "github.com/rentalhub/rental-core/pkg/persistence"

// Collection names, one worksheet each.
const (
	CollectionBuildings = "buildings"
	CollectionRooms     = "rooms"
	CollectionTenants   = "tenants"
	CollectionContracts = "contracts"
	CollectionInvoices  = "invoices"
	CollectionUsers     = "users"
)

// AllCollections lists every collection the application uses.
var AllCollections = []string{
	CollectionBuildings,
	CollectionRooms,
	CollectionTenants,
	CollectionContracts,
	CollectionInvoices,
	CollectionUsers,
}

// Schemas declares the field kinds the entities rely on. Values that look like
// numbers or dates to the spreadsheet but must stay text are declared as text.
func Schemas() map[string]persistence.Schema {
	base := persistence.DefaultSchema()

	return map[string]persistence.Schema{
		CollectionBuildings: base.With(map[string]persistence.FieldKind{
			"name":    persistence.KindText,
			"address": persistence.KindText,
		}),
		CollectionRooms: base.With(map[string]persistence.FieldKind{
			"roomNumber": persistence.KindText,
			"amenities":  persistence.KindJSON,
		}),
		CollectionTenants: base.With(map[string]persistence.FieldKind{
			"idNumber": persistence.KindText,
		}),
		CollectionContracts: base.With(map[string]persistence.FieldKind{
			"tenantIds": persistence.KindJSON,
			"startDate": persistence.KindText,
			"endDate":   persistence.KindText,
		}),
		CollectionInvoices: base.With(map[string]persistence.FieldKind{
			"period":  persistence.KindText,
			"items":   persistence.KindJSON,
			"dueDate": persistence.KindText,
		}),
		CollectionUsers: base.With(map[string]persistence.FieldKind{
			"username": persistence.KindText,
		}),
	}
}
