// Package list implements the doubly linked list backing the buffer pool's
// free list.
package list

// List struct.
type List[T any] struct {
	head *Link[T]
	tail *Link[T]
}

// Create a new list.
func NewList[T any]() *List[T] {
	return &List[T]{}
}

// Get a pointer to the head of the list.
func (list *List[T]) PeekHead() *Link[T] {
	return list.head
}

// Get a pointer to the tail of the list.
func (list *List[T]) PeekTail() *Link[T] {
	return list.tail
}

// IsEmpty reports whether the list holds no links.
func (list *List[T]) IsEmpty() bool {
	return list.head == nil
}

// Add an element to the start of the list. Returns the added link.
func (list *List[T]) PushHead(value T) *Link[T] {
	newlink := &Link[T]{list, nil, list.head, value}
	if list.head != nil {
		list.head.prev = newlink
	}
	list.head = newlink
	if list.tail == nil {
		list.tail = newlink
	}
	return newlink
}

// Add an element to the end of the list. Returns the added link.
func (list *List[T]) PushTail(value T) *Link[T] {
	newlink := &Link[T]{list, list.tail, nil, value}
	if list.tail != nil {
		list.tail.next = newlink
	}
	list.tail = newlink
	if list.head == nil {
		list.head = newlink
	}
	return newlink
}

// PopHead removes the head link and returns its value.
// The second return is false if the list was empty.
func (list *List[T]) PopHead() (value T, ok bool) {
	link := list.head
	if link == nil {
		return value, false
	}
	link.PopSelf()
	return link.value, true
}

// Find an element in a list given a boolean function, f, that evaluates to true on the desired element.
func (list *List[T]) Find(f func(*Link[T]) bool) *Link[T] {
	for cur := list.head; cur != nil; cur = cur.next {
		if f(cur) {
			return cur
		}
	}
	return nil
}

// Apply a function to every element in the list.
// Note: Map directly mutates the links in the list.
func (list *List[T]) Map(f func(*Link[T])) {
	for cur := list.head; cur != nil; {
		next := cur.next
		f(cur)
		cur = next
	}
}

// Link struct.
type Link[T any] struct {
	list  *List[T]
	prev  *Link[T]
	next  *Link[T]
	value T
}

// Get the list that this link is a part of.
func (link *Link[T]) GetList() *List[T] {
	return link.list
}

// Get the link's value.
func (link *Link[T]) GetValue() T {
	return link.value
}

// Set the link's value.
func (link *Link[T]) SetValue(value T) {
	link.value = value
}

// Get the link's prev.
func (link *Link[T]) GetPrev() *Link[T] {
	return link.prev
}

// Get the link's next.
func (link *Link[T]) GetNext() *Link[T] {
	return link.next
}

// Remove the link that calls PopSelf() from its list.
func (link *Link[T]) PopSelf() {
	if link.list == nil {
		return
	}
	if link.prev == nil {
		link.list.head = link.next
	} else {
		link.prev.next = link.next
	}
	if link.next == nil {
		link.list.tail = link.prev
	} else {
		link.next.prev = link.prev
	}
	link.list = nil
	link.prev = nil
	link.next = nil
}
