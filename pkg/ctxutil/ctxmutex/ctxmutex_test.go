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

package ctxmutex_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/rentalhub/rental-core/pkg/ctxutil/ctxmutex"
)

var _ = Describe("CtxMutex", func() {
	It("locks and unlocks", func() {
		m := ctxmutex.NewCtxMutex()
		Expect(m.Lock(context.Background())).To(Succeed())
		Expect(m.TryLock()).To(BeFalse())
		m.Unlock()
		Expect(m.TryLock()).To(BeTrue())
		m.Unlock()
	})

	It("gives up when the context expires while waiting", func() {
		m := ctxmutex.NewCtxMutex()
		Expect(m.Lock(context.Background())).To(Succeed())
		defer m.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		err := m.Lock(ctx)
		Expect(errors.Is(err, context.DeadlineExceeded)).To(BeTrue())
	})
})
